// Viewguard - View Tracking Integrity Service
// Copyright 2026 Husarkar (husarkar-hub)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/husarkar-hub/viewguard

package models

import "fmt"

// FormatViewCount renders a view count for display: values below 1,000
// verbatim, thousands with one decimal and a K suffix, millions with one
// decimal and an M suffix.
//
//	999     -> "999"
//	1500    -> "1.5K"
//	2500000 -> "2.5M"
func FormatViewCount(v int64) string {
	switch {
	case v >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(v)/1_000_000)
	case v >= 1_000:
		return fmt.Sprintf("%.1fK", float64(v)/1_000)
	default:
		return fmt.Sprintf("%d", v)
	}
}
