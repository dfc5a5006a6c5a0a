package usbscope

import "testing"

func TestClearHaltRequest(t *testing.T) {
	for _, ep := range []uint8{OutEndpoint, InEndpoint} {
		rType, request, value, index := clearHaltRequest(ep)
		if rType != 0x02 || request != 0x01 || value != 0 || index != uint16(ep) {
			t.Errorf("endpoint 0x%02x: setup = %#x %#x %#x %#x", ep, rType, request, value, index)
		}
	}
}

func TestDefaultOpener(t *testing.T) {
	o := DefaultOpener()
	if got := o.String(); got != "5345:1234 #0" {
		t.Fatalf("String() = %q", got)
	}
	if o.OutEndpoint&0x80 != 0 || o.InEndpoint&0x80 == 0 {
		t.Fatalf("endpoint directions: out 0x%02x in 0x%02x", o.OutEndpoint, o.InEndpoint)
	}
}
