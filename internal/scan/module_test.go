package scan_test

import (
	"testing"

	"github.com/HerbHall/taproot/internal/scan"
	"github.com/HerbHall/taproot/pkg/plugin"
	"github.com/HerbHall/taproot/pkg/plugin/plugintest"
)

func TestContract(t *testing.T) {
	plugintest.TestPluginContract(t, func() plugin.Plugin { return scan.New() })
}
