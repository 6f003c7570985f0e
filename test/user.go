// Copyright 2024 New Vector Ltd.
// Copyright 2022 The Matrix.org Foundation C.I.C.
//
// SPDX-License-Identifier: AGPL-3.0-only OR LicenseRef-Element-Commercial
// Please see LICENSE files in the repository root for full details.

package test

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/matrix-org/gomatrixserverlib/spec"
)

var (
	userIDCounter = int64(0)

	serverName = spec.ServerName("test")
)

type User struct {
	ID          string
	Localpart   string
	DisplayName string
	AvatarURL   string
	// Curve25519 key of the user's only device
	DeviceKey string
}

// NewUser returns a user with a unique ID, a display name and an avatar.
func NewUser(t *testing.T) *User {
	t.Helper()
	counter := atomic.AddInt64(&userIDCounter, 1)
	localpart := fmt.Sprintf("%d", counter)
	return &User{
		ID:          fmt.Sprintf("@%s:%s", localpart, serverName),
		Localpart:   localpart,
		DisplayName: fmt.Sprintf("User %d", counter),
		AvatarURL:   fmt.Sprintf("mxc://%s/avatar%d", serverName, counter),
		DeviceKey:   fmt.Sprintf("curve25519+%d", counter),
	}
}
