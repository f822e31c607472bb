// Copyright (C) 2026 The Dirwatch Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package events

import (
	"github.com/dirwatch/dirwatch/lib/logger"
)

var (
	dl = logger.DefaultLogger.NewFacility("events", "Event generation and broadcast")
)
