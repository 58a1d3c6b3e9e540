package cmd

import (
	"github.com/posener/complete/v2"
	"github.com/posener/complete/v2/predict"
)

// Completion describes the command line for shell completion.
// Run 'COMP_INSTALL=1 folio' to install it.
var Completion = &complete.Command{
	Flags: map[string]complete.Predictor{
		"config":    predict.Files("*.toml"),
		"log-level": predict.Set{"debug", "info", "warn", "error"},
	},
	Sub: map[string]*complete.Command{
		"portfolio": {},
		"update":    {Args: predict.Something},
		"history": {
			Flags: map[string]complete.Predictor{
				"days": predict.Something,
				"png":  predict.Files("*.png"),
			},
		},
		"analyze": {
			Flags: map[string]complete.Predictor{
				"no-summary": predict.Nothing,
				"raw":        predict.Nothing,
			},
		},
		"assist": {
			Flags: map[string]complete.Predictor{
				"no-summary": predict.Nothing,
			},
			Args: predict.Something,
		},
		"serve": {
			Flags: map[string]complete.Predictor{
				"addr": predict.Something,
			},
		},
		"help":     {Args: predict.Set{"portfolio", "update", "history", "analyze", "assist", "serve"}},
		"commands": {},
		"flags":    {},
	},
}
