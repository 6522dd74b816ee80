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
	"log/slog"
	"os"
	"strings"

	"github.com/RideReport/RideRecorderApp-sub003/common"
	"github.com/RideReport/RideRecorderApp-sub003/params"
	"github.com/RideReport/RideRecorderApp-sub003/state"
	"github.com/RideReport/RideRecorderApp-sub003/upload"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "riderecorder",
	Short: "Detect, record and upload trips from location and motion events",
	Long: `riderecorder runs the trip detection state machine.

It replays recorded location, visit and motion events through the recorder,
keeps routes in a local store, and syncs them with the trip server.

Settings come from flags, then RIDERECORDER_* environment variables,
then $HOME/.riderecorder.yaml.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	pFlags := rootCmd.PersistentFlags()
	pFlags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.riderecorder.yaml)")
	pFlags.String("datadir", params.DatadirRoot, "Data directory holding the route store")
	pFlags.CountP("verbosity", "v", "Log verbosity; repeat for more (-v info, -vv debug)")
	pFlags.String("server", params.DefaultUploadConfig.ServerAddress, "Trip server API root")
	pFlags.String("token", "", "Trip server bearer token")
	pFlags.String("gateway", "http", "Upload gateway: http, s3 or none")
	pFlags.String("s3-bucket", params.AWS_BUCKETNAME, "S3 bucket for the s3 gateway")
	pFlags.String("statusd-token", "", "API token required by the status daemon")

	mustBindPFlags(pFlags)
}

// mustBindPFlags lets viper read the flags, so env and config file values
// fill in whatever is not given on the command line.
func mustBindPFlags(fs *pflag.FlagSet) {
	if err := viper.BindPFlags(fs); err != nil {
		panic(err)
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		cobra.CheckErr(err)
		viper.AddConfigPath(home)
		viper.SetConfigName(params.ConfigFileName)
	}

	viper.SetEnvPrefix(params.EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// setDefaultSlog installs a stderr text logger at the flagged verbosity.
func setDefaultSlog(cmd *cobra.Command, args []string) {
	level := common.SlogLevelForVerbosity(viper.GetInt("verbosity"))
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	slog.Debug("Command", "name", cmd.Name(), "args", args, "datadir", viper.GetString("datadir"))
}

func openStore(readOnly bool) (*state.Store, error) {
	datadir, err := homedir.Expand(viper.GetString("datadir"))
	if err != nil {
		return nil, err
	}
	return state.Open(datadir, readOnly)
}

func uploadConfig() *params.UploadConfig {
	c := *params.DefaultUploadConfig
	c.ServerAddress = viper.GetString("server")
	c.Token = viper.GetString("token")
	return &c
}

// newGateway returns the configured upload gateway, or nil for "none".
func newGateway(config *params.UploadConfig) (upload.Gateway, error) {
	switch kind := viper.GetString("gateway"); kind {
	case "http":
		return upload.NewHTTPGateway(config, params.DefaultRouteConfig), nil
	case "s3":
		return upload.NewS3Archive(viper.GetString("s3-bucket"), config)
	case "none", "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown gateway %q", kind)
	}
}
