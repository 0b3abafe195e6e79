/*
 * Copyright 2026 absnotary.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Command abscheck prints the effective connection pool configuration,
// tests a live acquisition, and reports pool statistics.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/absnotary/absorm/database"
)

func main() {
	configFile := flag.String("config", "", "optional YAML settings file; environment variables win otherwise")
	timeout := flag.Duration("timeout", 10*time.Second, "overall deadline for the connection test")
	flag.Parse()

	if err := run(*configFile, *timeout); err != nil {
		color.Red("abscheck: %v", err)
		os.Exit(1)
	}
}

func run(configFile string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var settings *database.Settings
	var err error
	if configFile != "" {
		settings, err = database.LoadSettingsFile(configFile)
		if err != nil {
			return fmt.Errorf("load settings file: %w", err)
		}
	} else {
		settings = database.SettingsFromEnv()
	}

	rule := strings.Repeat("=", 60)
	fmt.Println(rule)
	fmt.Println("absorm connection pool configuration")
	fmt.Println(rule)

	fmt.Println("\nConfiguration settings:")
	fmt.Printf("  Pool size:       %d connections\n", settings.PoolSize)
	fmt.Printf("  Max overflow:    %d connections\n", settings.MaxOverflow)
	fmt.Printf("  Total max:       %d connections\n", settings.MaxConnections())
	fmt.Printf("  Pre-ping:        %v\n", settings.PrePing)
	fmt.Printf("  Recycle:         %s\n", settings.Recycle)
	fmt.Printf("  Acquire timeout: %s\n", settings.AcquireTimeout)
	fmt.Printf("  Pool disabled:   %v\n", settings.Disabled)

	db, err := database.Open(settings)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() { _ = db.Close(context.Background()) }()

	fmt.Println("\nConnection test:")
	uow, err := db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin unit of work: %w", err)
	}
	var version string
	if err := uow.DB().NewSelect().ColumnExpr("version()").Scan(ctx, &version); err != nil {
		// SQLite has no version() function.
		if verr := uow.DB().NewSelect().ColumnExpr("sqlite_version()").Scan(ctx, &version); verr != nil {
			uow.Close()
			return fmt.Errorf("query server version: %w", err)
		}
		version = "SQLite " + version
	}
	uow.Close()
	color.Green("  connection successful")
	fmt.Printf("  server: %s\n", truncate(version, 60))

	stats := db.Stats()
	fmt.Println("\nLive pool statistics:")
	fmt.Printf("  Idle:            %d\n", stats.Idle)
	fmt.Printf("  In use:          %d\n", stats.InUse)
	fmt.Printf("  Open:            %d\n", stats.Open)
	fmt.Printf("  Total created:   %d\n", stats.TotalCreated)
	fmt.Printf("  Total destroyed: %d\n", stats.TotalDestroyed)
	fmt.Printf("  Wait count:      %d\n", stats.WaitCount)
	fmt.Printf("  Wait timeouts:   %d\n", stats.WaitTimeouts)
	fmt.Printf("  Probe failures:  %d\n", stats.ProbeFailures)

	health := db.HealthCheck(ctx)
	fmt.Println("\nHealth check:")
	if health.Healthy {
		color.Green("  healthy (response time %s)", health.ResponseTime)
	} else {
		color.Red("  unhealthy: %s", health.LastError)
	}

	fmt.Println("\n" + rule)
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
