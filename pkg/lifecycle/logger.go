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

package lifecycle

import (
	"github.com/carverauto/devmon/pkg/logger"
	"github.com/rs/zerolog"
)

// CreateComponentLogger builds the logger for one binary or subsystem from
// config, tagging every event with the component name. A nil config means
// logger.DefaultConfig.
func CreateComponentLogger(component string, config *logger.Config) (logger.Logger, error) {
	if config == nil {
		config = logger.DefaultConfig()
	}

	zlog, err := logger.New(logger.Destination(config), config)
	if err != nil {
		return nil, err
	}

	return logger.Wrap(zlog.With().Str("component", component).Logger()), nil
}

// WrapLogger adapts an existing zerolog logger, typically one built by
// logger.New around a buffer in tests.
func WrapLogger(zlog zerolog.Logger) logger.Logger {
	return logger.Wrap(zlog)
}
