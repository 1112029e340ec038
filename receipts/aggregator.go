////////////////////////////////////////////////////////////////////////////////
// Copyright © 2023 GamerHive                                                 //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package receipts derives the per-message delivery indicator from raw
// receipt data and batches outgoing mark-read requests.
package receipts

import (
	"strconv"

	"github.com/Asadullah-Sadiq/GamerHive-sub000/catalog"
)

// Indicator is the rendered delivery marker for an outgoing message.
type Indicator uint8

const (
	// Clock renders while the message is still sending.
	Clock Indicator = iota

	// SingleTick renders once the server accepted the message.
	SingleTick

	// DoubleTick renders once at least one recipient received or read it.
	DoubleTick

	// DoubleTickAccent renders once every recipient read it.
	DoubleTickAccent
)

// String prints the Indicator name for logging.
func (i Indicator) String() string {
	switch i {
	case Clock:
		return "Clock"
	case SingleTick:
		return "SingleTick"
	case DoubleTick:
		return "DoubleTick"
	case DoubleTickAccent:
		return "DoubleTickAccent"
	default:
		return "UNKNOWN INDICATOR: " + strconv.Itoa(int(i))
	}
}

// Derive computes the indicator from the message status and the read
// aggregates. totalRecipients excludes the sender; direct messages fix it at
// 1. The rules are evaluated in priority order and the first match wins:
//
//  1. Server says read.
//  2. Every recipient read it (redundant confirmation of 1).
//  3. Server says delivered, or some but not all recipients read it.
//  4. Server says sent, or nobody read it yet.
//  5. Still sending.
func Derive(status catalog.Status, readCount, totalRecipients int) Indicator {
	switch {
	case status == catalog.Read:
		return DoubleTickAccent
	case totalRecipients > 0 && readCount >= totalRecipients:
		return DoubleTickAccent
	case status == catalog.Delivered,
		readCount > 0 && readCount < totalRecipients:
		return DoubleTick
	case status == catalog.Sent,
		readCount == 0 && totalRecipients > 0 && status != catalog.Sending:
		return SingleTick
	default:
		return Clock
	}
}

// Aggregate folds a read count into a status, enforcing monotonicity: the
// status can only move forward. Used when a receipt batch arrives without a
// direct status event.
func Aggregate(current catalog.Status, readCount, totalRecipients int) catalog.Status {
	derived := current
	switch {
	case totalRecipients > 0 && readCount >= totalRecipients:
		derived = catalog.Read
	case readCount > 0:
		derived = catalog.Delivered
	}

	if !derived.AtLeast(current) {
		return current
	}
	return derived
}
