package main

// RxQuality is the signal quality a radio backend reported for a frame.
// Backends that cannot measure it (serial modem, simulator) pass nil.
type RxQuality struct {
	RssiDbm int
	SnrDb   int
}
