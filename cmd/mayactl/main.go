// Copyright (C) 2025 FinCove Pvt. Ltd.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "mayactl",
	Short: "A CLI to administer the Maya voice assistant gateway",
	Long: `mayactl talks to a running Maya gateway over its HTTP API to manage
persisted voice sessions, trigger OTP verification, and ingest knowledge
base documents.`,
}

func main() {
	rootCmd.AddCommand(sessionCmd, otpCmd, ingestCmd, healthCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
