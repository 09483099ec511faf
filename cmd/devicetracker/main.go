/*
 * Copyright 2025 Carver Automation Corporation.
 *
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

package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/carverauto/devicetracker/cmd/devicetracker/app"
	"github.com/carverauto/devicetracker/pkg/version"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	configPath := flag.String("config", "/etc/devicetracker/devicetracker.json", "Path to devicetracker config file")
	captureFile := flag.String("capture", "", "pcap or pcapng file to replay (overrides capture_file)")
	showVersion := flag.Bool("version", false, "Print the version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.ServiceName, version.GetFullVersion())
		return nil
	}

	return app.Run(context.Background(), app.Options{
		ConfigPath:  *configPath,
		CaptureFile: *captureFile,
	})
}
