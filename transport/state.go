////////////////////////////////////////////////////////////////////////////////
// Copyright © 2023 GamerHive                                                 //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package transport

import "strconv"

// State is the observable connection state of the event channel.
type State uint32

const (
	Disconnected State = iota
	Connecting
	Connected
)

// String prints a human-readable name for the State for logging.
func (s State) String() string {
	switch s {
	case Disconnected:
		return "Disconnected"
	case Connecting:
		return "Connecting"
	case Connected:
		return "Connected"
	default:
		return "UNKNOWN STATE: " + strconv.FormatUint(uint64(s), 10)
	}
}
