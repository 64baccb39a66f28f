// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package log

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/logtags"
	"github.com/cockroachdb/redact"
	"github.com/stretchr/testify/require"
)

func TestLogTagsAndRedaction(t *testing.T) {
	sc := Scope(t)
	defer sc.Close(t)

	ctx := logtags.AddTag(context.Background(), "opt", nil)
	ctx = logtags.AddTag(ctx, "table", "orders")
	Warningf(ctx, "missing statistics for %s", "idx")

	msgs := sc.Messages(SeverityWarning)
	require.Len(t, msgs, 1)
	require.Equal(t, "[opt,table=orders] missing statistics for idx", msgs[0])

	SetRedactable(true)
	defer SetRedactable(false)
	Infof(context.Background(), "value %s safe %s", "secret", redact.Safe("ok"))
	require.True(t, sc.Contains("value ‹secret› safe ok"))
}

func TestVerbosity(t *testing.T) {
	sc := Scope(t)
	defer sc.Close(t)

	ctx := context.Background()
	VEventf(ctx, 2, "hidden")
	require.False(t, sc.Contains("hidden"))

	SetVerbosity(2)
	require.True(t, V(1))
	VEventf(ctx, 2, "shown")
	require.True(t, sc.Contains("shown"))
}

func TestEveryNLog(t *testing.T) {
	e := Every(time.Hour)
	now := time.Now()
	require.True(t, e.shouldLog(now))
	require.False(t, e.shouldLog(now.Add(time.Minute)))
	SetVerbosity(2)
	defer SetVerbosity(0)
	require.True(t, e.shouldLog(now.Add(time.Minute)))
}

func TestSetNoColor(t *testing.T) {
	defer SetNoColor(false)
	SetNoColor(true)
	require.Equal(t, colorNone, stderrColorProfile())
	require.NotNil(t, logging.logger)
}
