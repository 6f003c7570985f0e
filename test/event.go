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

package test

import (
	"encoding/json"
	"testing"

	"github.com/matrix-org/gomatrixserverlib/spec"

	"github.com/matrix-org/eventview/eventview/synctypes"
)

const MegolmAlgorithm = "m.megolm.v1.aes-sha2"

type eventMods struct {
	originServerTS *spec.Timestamp
	stateKey       *string
	prevContent    interface{}
	unsigned       interface{}
	decryption     *synctypes.DecryptionResult
	redacts        string
}

type eventModifier func(e *eventMods)

func WithTimestamp(ts spec.Timestamp) eventModifier {
	return func(e *eventMods) {
		e.originServerTS = &ts
	}
}

func WithStateKey(skey string) eventModifier {
	return func(e *eventMods) {
		e.stateKey = &skey
	}
}

func WithPrevContent(prevContent interface{}) eventModifier {
	return func(e *eventMods) {
		e.prevContent = prevContent
	}
}

func WithUnsigned(unsigned interface{}) eventModifier {
	return func(e *eventMods) {
		e.unsigned = unsigned
	}
}

func WithRedacts(eventID string) eventModifier {
	return func(e *eventMods) {
		e.redacts = eventID
	}
}

// WithDecryption attaches a decryption result whose payload has the given
// clear type and content.
func WithDecryption(t *testing.T, clearType string, clearContent interface{}, senderKey string) eventModifier {
	t.Helper()
	payload := MustMarshal(t, map[string]interface{}{
		"type":    clearType,
		"content": clearContent,
	})
	return func(e *eventMods) {
		e.decryption = &synctypes.DecryptionResult{
			Payload:   payload,
			SenderKey: senderKey,
		}
	}
}

// MustMarshal marshals v as JSON or fails the test.
func MustMarshal(t *testing.T, v interface{}) spec.RawJSON {
	t.Helper()
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to marshal %T: %s", v, err)
	}
	return b
}

// Reverse a list of events
func Reversed(in []*synctypes.ClientEvent) []*synctypes.ClientEvent {
	out := make([]*synctypes.ClientEvent, len(in))
	for i := 0; i < len(in); i++ {
		out[i] = in[len(in)-i-1]
	}
	return out
}
