package cmd

import (
	"log"
	"os"

	"github.com/spf13/viper"
)

var debugLog = log.New(os.Stderr, "wpmu: ", log.LstdFlags)

// debugf logs to stderr when --verbose is set.
func debugf(format string, args ...any) {
	if viper.GetBool("verbose") {
		debugLog.Printf(format, args...)
	}
}
