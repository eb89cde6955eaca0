// Package vad provides energy-based Voice Activity Detection with an
// adaptive noise floor. It classifies fixed-cadence amplitude samples as
// speech or silence and raises latched silence-timeout events that drive
// recorder flushing.
package vad
