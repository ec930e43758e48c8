/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package migrations

import "embed"

// FS contains the embedded SQLite migrations for table storage.
//
//go:embed *.sql
var FS embed.FS
