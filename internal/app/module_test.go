package app

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
)

func TestModuleGraphResolves(t *testing.T) {
	require.NoError(t, fx.ValidateApp(Module))
}
