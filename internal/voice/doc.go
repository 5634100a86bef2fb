// Package voice has helpers built on a connected client: picking and
// joining channels and playing audio files into them.
package voice
