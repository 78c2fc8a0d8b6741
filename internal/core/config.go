package core

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// DefaultChainDepth is the chain length used when nothing else is
	// configured, matching the classic three-process demonstration.
	DefaultChainDepth = 3

	// MaxChainDepth bounds the chain length. This is a resource-safety
	// ceiling: each member holds a live OS process until the chain unwinds.
	MaxChainDepth = 128
)

var Config *viper.Viper

var globalFlagsToConfigKey = map[string]string{
	"depth":   "depth",
	"signal":  "signal",
	"verbose": "verbose",
}

func GetChainDepth() int {
	return Config.GetInt("depth")
}

func GetFatalSignalName() string {
	return Config.GetString("signal")
}

func GetVerbosity() int {
	return Config.GetInt("verbose")
}

// ValidateChainDepth enforces the [1, MaxChainDepth] bound on a configured
// chain length.
func ValidateChainDepth(depth int) error {
	if depth < 1 || depth > MaxChainDepth {
		return fmt.Errorf("chain depth %d out of range [1, %d]", depth, MaxChainDepth)
	}
	return nil
}

// InitializeConfig builds the process-wide config from defaults, SIGSTACK_*
// environment variables and the command's flags, in increasing precedence.
// There is deliberately no config file: the chain's configuration is fixed
// at startup and the tool touches nothing on disk.
//
// Spawned chain members inherit the parent's environment, so SIGSTACK_DEPTH
// set by the spawner lands here as the child's chain position.
func InitializeConfig(cmd *cobra.Command) error {
	Config = viper.New()

	// Set defaults
	Config.SetDefault("depth", DefaultChainDepth)
	Config.SetDefault("signal", "SIGINT")
	Config.SetDefault("verbose", 0)

	// Setup env reading
	Config.SetEnvPrefix("sigstack")
	Config.AutomaticEnv() // read in environment variables that match

	// Bind the current command's flags to viper
	if cmd != nil {
		cmd.Flags().VisitAll(func(f *pflag.Flag) {
			// Is this a global flag
			configKey, ok := globalFlagsToConfigKey[f.Name]
			if !ok {
				return
			}

			// Apply the viper config value to the flag when the flag is not set and viper has a value
			if !f.Changed && Config.IsSet(configKey) {
				cmd.Flags().Set(f.Name, fmt.Sprintf("%v", Config.Get(configKey)))
			} else {
				Config.Set(configKey, fmt.Sprintf("%v", f.Value))
			}
		})
	}

	return nil
}
