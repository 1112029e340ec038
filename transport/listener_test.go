////////////////////////////////////////////////////////////////////////////////
// Copyright © 2023 GamerHive                                                 //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package transport

import (
	"encoding/json"
	"testing"
)

// Tests that a registered listener hears events for its name and that other
// names do not reach it.
func TestListenerMap_RegisterAndSpeak(t *testing.T) {
	lm := NewListenerMap()

	var heard []string
	lm.Register("new-message", func(p json.RawMessage) {
		heard = append(heard, string(p))
	})

	lm.Speak("new-message", json.RawMessage(`"a"`))
	lm.Speak("typing", json.RawMessage(`"b"`))
	lm.Speak("new-message", json.RawMessage(`"c"`))

	if len(heard) != 2 || heard[0] != `"a"` || heard[1] != `"c"` {
		t.Errorf("Listener heard wrong payloads.\nexpected: %v\nreceived: %v",
			[]string{`"a"`, `"c"`}, heard)
	}
}

// Tests that Unregister removes only the targeted listener.
func TestListenerMap_Unregister(t *testing.T) {
	lm := NewListenerMap()

	var first, second int
	id1 := lm.Register("typing", func(json.RawMessage) { first++ })
	lm.Register("typing", func(json.RawMessage) { second++ })

	lm.Unregister(id1)
	lm.Speak("typing", nil)

	if first != 0 {
		t.Errorf("Unregistered listener still heard %d events.", first)
	}
	if second != 1 {
		t.Errorf("Remaining listener heard %d events; expected 1.", second)
	}
}

// Tests that a panicking handler does not prevent delivery to the remaining
// listeners or kill the caller.
func TestListenerMap_SpeakRecoversPanic(t *testing.T) {
	lm := NewListenerMap()

	lm.Register("new-message", func(json.RawMessage) {
		panic("malformed event")
	})

	var survived bool
	lm.Register("new-message", func(json.RawMessage) { survived = true })

	lm.Speak("new-message", nil)

	if !survived {
		t.Error("Listener after the panicking one was never called.")
	}
}

// Tests that listener IDs stay unique across events so Unregister cannot
// remove a listener on another event name.
func TestListenerMap_UniqueIDs(t *testing.T) {
	lm := NewListenerMap()

	ids := map[string]bool{}
	for _, event := range []string{"a", "b", "a", "c"} {
		id := lm.Register(event, func(json.RawMessage) {})
		if ids[id] {
			t.Errorf("Duplicate listener ID %q returned.", id)
		}
		ids[id] = true
	}
}
