// Package hardware provides the oven I/O back ends: a thermal simulator for
// development and a serial-attached board for the real oven. Both serve
// thermocouple frames and accept heater/fan duty cycles.
package hardware
