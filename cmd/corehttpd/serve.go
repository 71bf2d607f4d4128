// Copyright 2025 The corehttpd Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/chenbk85/corehttpd/confengine"
	"github.com/chenbk85/corehttpd/internal/sigs"
	"github.com/chenbk85/corehttpd/logger"
	"github.com/chenbk85/corehttpd/server"
	"github.com/chenbk85/corehttpd/server/datasrv"
	"github.com/chenbk85/corehttpd/tlsengine"
)

var configPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the data-plane listener",
	Run: func(cmd *cobra.Command, args []string) {
		conf, err := confengine.LoadConfigPath(configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
			os.Exit(1)
		}

		applyLoggerConfig(conf)

		cfg, err := buildDatasrvConfig(conf)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to build server config: %v\n", err)
			os.Exit(1)
		}

		srv, err := datasrv.New(cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to create server: %v\n", err)
			os.Exit(1)
		}

		admin, err := server.New(conf)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to create admin server: %v\n", err)
			os.Exit(1)
		}
		if admin != nil {
			go func() {
				if err := admin.ListenAndServe(); err != nil {
					logger.Warnf("admin server stopped: %v", err)
				}
			}()
		}

		ctx, cancel := context.WithCancel(context.Background())
		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.ListenAndServe(ctx)
		}()

		logger.Infof("corehttpd listening on %s", cfg.Address)

		var reloadTotal int
		for {
			select {
			case <-sigs.Terminate():
				cancel()
				if err := srv.Close(); err != nil {
					logger.Errorf("failed to close server cleanly: %v", err)
				}
				return

			case <-sigs.Reload():
				reloadTotal++
				newConf, err := confengine.LoadConfigPath(configPath)
				if err != nil {
					logger.Errorf("failed to reload config (count=%d): %v", reloadTotal, err)
					continue
				}
				start := time.Now()
				// The listener's socket, buffer pool and TLS context
				// are fixed at New time; a reload here only refreshes
				// the logger, so in-flight connections never lose
				// their worker assignment (spec §8's reload property).
				applyLoggerConfig(newConf)
				logger.Infof("reload (count=%d) took %s", reloadTotal, time.Since(start))

			case err := <-errCh:
				if err != nil {
					logger.Errorf("listener stopped: %v", err)
					os.Exit(1)
				}
				return
			}
		}
	},
	Example: "# corehttpd serve --config corehttpd.yaml",
}

func init() {
	serveCmd.Flags().StringVar(&configPath, "config", "corehttpd.yaml", "Configuration file path")
	rootCmd.AddCommand(serveCmd)
}

func applyLoggerConfig(conf *confengine.Config) {
	if !conf.Has("logger") {
		return
	}
	var opt logger.Options
	if err := conf.UnpackChild("logger", &opt); err != nil {
		logger.Warnf("failed to apply logger config: %v", err)
		return
	}
	logger.SetOptions(opt)
}

// datasrvSettings mirrors spec §6's recognized top-level configuration
// keys, plus this expansion's ambient additions.
type datasrvSettings struct {
	BindAddress       string `config:"bindAddress"`
	ListenPort        int    `config:"listenPort"`
	MaxUserConnection int    `config:"maxUserConnection"`
	BufferSize        int    `config:"bufferSize"`
	EnableSSL         bool   `config:"enableSSL"`
	EnableHTTP2       bool   `config:"enableHTTP2"`
	RootPath          string `config:"rootPath"`
	PrivateKeyPath    string `config:"privateKeyPath"`
	CertificatePath   string `config:"certificatePath"`

	MaxHeaders      int `config:"maxHeaders"`
	TimeWaitSeconds int `config:"timeWaitSeconds"`
}

func buildDatasrvConfig(conf *confengine.Config) (datasrv.Config, error) {
	var raw datasrvSettings
	if err := conf.Unpack(&raw); err != nil {
		return datasrv.Config{}, err
	}

	cfg := datasrv.DefaultConfig()
	if raw.BindAddress != "" || raw.ListenPort != 0 {
		cfg.Address = fmt.Sprintf("%s:%d", raw.BindAddress, raw.ListenPort)
	}
	if raw.MaxUserConnection > 0 {
		cfg.MaxConnections = raw.MaxUserConnection
	}
	if raw.BufferSize > 0 {
		cfg.BufferWidth = raw.BufferSize
	}
	if raw.MaxHeaders > 0 {
		cfg.MaxHeaders = raw.MaxHeaders
	}
	if raw.TimeWaitSeconds > 0 {
		cfg.TimeWait = time.Duration(raw.TimeWaitSeconds) * time.Second
	}
	cfg.EnableHTTP2 = raw.EnableHTTP2
	cfg.DocumentRoot = raw.RootPath

	if raw.EnableSSL {
		cfg.TLS = &tlsengine.Options{
			CertFile:    raw.CertificatePath,
			KeyFile:     raw.PrivateKeyPath,
			EnableHTTP2: raw.EnableHTTP2,
		}
	}
	return cfg, nil
}
