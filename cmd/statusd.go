/*
Copyright © 2024 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"log"
	"log/slog"

	"github.com/RideReport/RideRecorderApp-sub003/common"
	"github.com/RideReport/RideRecorderApp-sub003/daemon/statusd"
	"github.com/RideReport/RideRecorderApp-sub003/params"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// statusdCmd serves a store that no recorder is running against.
// Use replay --statusd to watch a live run.
var statusdCmd = &cobra.Command{
	Use:   "statusd",
	Short: "Serve stored routes over HTTP",
	Run: func(cmd *cobra.Command, args []string) {
		setDefaultSlog(cmd, args)
		slog.Info("statusd.Run")

		ctx, cancel := common.InterruptContext(context.Background())
		defer cancel()

		store, err := openStore(true)
		if err != nil {
			log.Fatalln(err)
		}
		defer store.Close()

		config := params.DefaultStatusDaemonConfig()
		config.Address = viper.GetString("statusd-address")
		config.Token = viper.GetString("statusd-token")
		if err := statusd.NewStatusDaemon(config, store, nil, nil).Run(ctx); err != nil {
			log.Fatalln(err)
		}
	},
}

func init() {
	rootCmd.AddCommand(statusdCmd)

	defaults := params.DefaultStatusDaemonConfig()

	pFlags := statusdCmd.PersistentFlags()
	pFlags.String("statusd-address", defaults.Address, "HTTP address to listen on")
	mustBindPFlags(pFlags)
}
