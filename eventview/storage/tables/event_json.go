// Copyright 2022 The Matrix.org Foundation C.I.C.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package tables

import (
	"encoding/json"
	"fmt"

	"github.com/matrix-org/eventview/eventview/synctypes"
)

// MarshalEvent encodes the event as stored in the events table. Decryption
// results live in their own table and are left out.
func MarshalEvent(event *synctypes.ClientEvent) ([]byte, error) {
	ev := *event
	ev.Decryption = nil
	return json.Marshal(ev)
}

// UnmarshalEvent decodes an event read from the events table.
func UnmarshalEvent(eventJSON []byte) (*synctypes.ClientEvent, error) {
	var ev synctypes.ClientEvent
	if err := json.Unmarshal(eventJSON, &ev); err != nil {
		return nil, fmt.Errorf("json.Unmarshal: %w", err)
	}
	return &ev, nil
}
