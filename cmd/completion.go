package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/saturnblock/pythonplantpot/internal/plantpot/config"
	"github.com/saturnblock/pythonplantpot/internal/plantpot/engine"
)

// settingKeys completes the first argument of `config set`
func settingKeys(_ *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	var keys []string
	for _, key := range config.SettingKeys() {
		if strings.HasPrefix(strings.ToLower(key), strings.ToLower(toComplete)) {
			keys = append(keys, key)
		}
	}
	return keys, cobra.ShellCompDirectiveNoFileComp
}

// eventKinds completes --kind for `history`
func eventKinds(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
	return []string{
		string(engine.KindScheduled),
		string(engine.KindManual),
		string(engine.KindTimed),
		string(engine.KindRepot),
		string(engine.KindSkipped),
	}, cobra.ShellCompDirectiveNoFileComp
}
