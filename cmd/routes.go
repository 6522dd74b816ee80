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
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/RideReport/RideRecorderApp-sub003/common"
	"github.com/RideReport/RideRecorderApp-sub003/conceptual"
	"github.com/RideReport/RideRecorderApp-sub003/params"
	"github.com/RideReport/RideRecorderApp-sub003/types/route"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var (
	optRoutesClosedOnly bool
	optRoutesArchiveAge time.Duration
)

var routesCmd = &cobra.Command{
	Use:   "routes",
	Short: "Inspect stored routes",
}

var routesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List routes, oldest first",
	Run: func(cmd *cobra.Command, args []string) {
		setDefaultSlog(cmd, args)
		store, err := openStore(true)
		if err != nil {
			log.Fatalln(err)
		}
		defer store.Close()

		var match func(r *route.Route) bool
		if optRoutesClosedOnly {
			match = func(r *route.Route) bool { return r.IsClosed }
		}
		routes, err := store.Routes(match)
		if err != nil {
			log.Fatalln(err)
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tACTIVITY\tSTARTED\tDURATION\tLENGTH\tSPEED\tPOINTS\tSTATE")
		for _, r := range routes {
			st := "open"
			switch {
			case r.IsUploaded:
				st = "uploaded"
			case r.IsSummaryUploaded:
				st = "summary"
			case r.IsClosed:
				st = "closed"
			}
			if r.LastSyncError != "" {
				st += " (" + r.LastSyncError + ")"
			}
			fmt.Fprintf(w, "%s\t%s %s\t%s\t%s\t%s\t%.1f km/h\t%d\t%s\n",
				r.ID, r.Activity.Emoji(), r.Activity, humanize.Time(r.StartDate()),
				r.Duration().Round(time.Second), humanize.SIWithDigits(r.Length, 1, "m"),
				common.KPH(r.AverageSpeed(params.DefaultRouteConfig)), r.LocationCount(), st)
		}
		_ = w.Flush()
	},
}

var routesShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print a route as a GeoJSON feature",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		setDefaultSlog(cmd, args)
		id, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			log.Fatalln(err)
		}
		store, err := openStore(true)
		if err != nil {
			log.Fatalln(err)
		}
		defer store.Close()
		r, err := store.GetRoute(conceptual.RouteID(id))
		if err != nil {
			log.Fatalln(err)
		}
		if err := json.NewEncoder(os.Stdout).Encode(r.Feature(params.DefaultRouteConfig)); err != nil {
			log.Fatalln(err)
		}
	},
}

var routesArchiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Move old, fully uploaded routes to the archive",
	Run: func(cmd *cobra.Command, args []string) {
		setDefaultSlog(cmd, args)
		store, err := openStore(false)
		if err != nil {
			log.Fatalln(err)
		}
		defer store.Close()
		cutoff := time.Now().Add(-optRoutesArchiveAge)
		n, err := store.ArchiveRoutes(func(r *route.Route) bool {
			return r.IsClosed && r.IsUploaded && r.EndDate().Before(cutoff)
		})
		if err != nil {
			log.Fatalln(err)
		}
		fmt.Printf("Archived %s routes\n", humanize.Comma(int64(n)))
	},
}

func init() {
	rootCmd.AddCommand(routesCmd)
	routesCmd.AddCommand(routesListCmd, routesShowCmd, routesArchiveCmd)

	routesListCmd.Flags().BoolVar(&optRoutesClosedOnly, "closed", false, "Only closed routes")
	routesArchiveCmd.Flags().DurationVar(&optRoutesArchiveAge, "older-than", 30*24*time.Hour, "Archive routes that ended longer ago than this")
}
