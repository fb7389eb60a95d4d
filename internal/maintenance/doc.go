// Package maintenance holds the periodic housekeeping sweeps over the remote
// store: the visual audit that color-codes day folders by content completeness,
// and the monthly rollover that archives last month and pre-provisions the
// next one. Both touch the remote store only and isolate per-folder failures
// so one bad folder never aborts a sweep.
package maintenance
