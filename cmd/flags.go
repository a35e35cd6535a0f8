package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// mustFlag reads a flag defined in init(). A lookup error means the flag name
// and the command definition disagree, so it panics.
func mustFlag[T any](get func(string) (T, error), name string) T {
	val, err := get(name)
	if err != nil {
		panic(fmt.Sprintf("flag --%s: %v", name, err))
	}
	return val
}

func mustGetBool(cmd *cobra.Command, name string) bool {
	return mustFlag(cmd.Flags().GetBool, name)
}

func mustGetInt(cmd *cobra.Command, name string) int {
	return mustFlag(cmd.Flags().GetInt, name)
}

func mustGetString(cmd *cobra.Command, name string) string {
	return mustFlag(cmd.Flags().GetString, name)
}
