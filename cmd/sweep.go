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
	"fmt"
	"log"

	"github.com/RideReport/RideRecorderApp-sub003/recorder"
	"github.com/spf13/cobra"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Close or cancel routes left open by an interrupted run",
	Run: func(cmd *cobra.Command, args []string) {
		setDefaultSlog(cmd, args)
		store, err := openStore(false)
		if err != nil {
			log.Fatalln(err)
		}
		defer store.Close()

		closed, canceled, err := recorder.New(store, nil, nil, nil).SweepOpenRoutes()
		if err != nil {
			log.Fatalln(err)
		}
		fmt.Printf("Closed %d, canceled %d\n", closed, canceled)
	},
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}
