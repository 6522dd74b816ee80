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
	"github.com/RideReport/RideRecorderApp-sub003/params"
	"github.com/RideReport/RideRecorderApp-sub003/recorder"
	"github.com/spf13/cobra"
)

var (
	optUploadFull        bool
	optUploadAggregators bool
)

var uploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Sync closed routes with the trip server",
	Long: `Upload runs one upload pass: every closed route not yet uploaded is sent,
oldest first. Without --full only route summaries are sent.

With --aggregators, prediction aggregators not yet uploaded are sent too.`,
	Run: func(cmd *cobra.Command, args []string) {
		setDefaultSlog(cmd, args)
		ctx, cancel := common.InterruptContext(context.Background())
		defer cancel()

		store, err := openStore(false)
		if err != nil {
			log.Fatalln(err)
		}
		defer store.Close()

		config := uploadConfig()
		gateway, err := newGateway(config)
		if err != nil {
			log.Fatalln(err)
		}
		rec := recorder.New(store, gateway, params.DefaultRouteConfig, config)

		n, err := rec.UploadRoutes(ctx, optUploadFull)
		slog.Info("Uploaded routes", "count", n, "full", optUploadFull)
		if err != nil {
			log.Fatalln(err)
		}
		if optUploadAggregators {
			n, err := rec.UploadPredictionAggregators(ctx)
			slog.Info("Uploaded aggregators", "count", n)
			if err != nil {
				log.Fatalln(err)
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(uploadCmd)
	uploadCmd.Flags().BoolVar(&optUploadFull, "full", false, "Upload full routes, not only summaries")
	uploadCmd.Flags().BoolVar(&optUploadAggregators, "aggregators", false, "Also upload prediction aggregators")
}
