// Package services implements the driving ports on top of the driven ones.
//
// ImageService and FlashService do the real work: they resolve the
// bootloader and partition table from settings, build the app image with
// imageformat, then talk to the chip through a driven.Device. The other
// services are thin wrappers over stores and the partition package.
//
// Optional collaborators (history, progress, port picker, file watcher)
// are attached with setters and may stay nil.
package services
