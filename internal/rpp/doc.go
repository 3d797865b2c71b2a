// Package rpp reads and edits REAPER project files (.RPP).
//
// An RPP file is a tree of chunks. A chunk starts with a line beginning
// with "<" followed by its name and parameters, and ends with a line that
// holds a single ">". Everything in between is either a nested chunk or an
// attribute line of space-separated tokens:
//
//	<REAPER_PROJECT 0.1 "7.0/linux-x86_64" 1700000000
//	  CURSOR 12.5
//	  <TRACK {GUID}
//	    NAME "Mix"
//	    <ITEM
//	      POSITION 0
//	      SEL 1
//	      <SOURCE WAVE
//	        FILE "/audio/song.wav"
//	      >
//	    >
//	  >
//	>
//
// The parser keeps every line it does not understand verbatim, so a
// project round-trips unchanged apart from indentation. On top of the tree,
// Project implements the host operations the matchering flows need:
// selected items and their source files, adding a JS effect to a track's
// FX chain, appending a track and inserting a media item on it.
//
// Edits are kept in memory until UpdateArrange writes the project back,
// keeping the previous version as "<name>.RPP-bak" like REAPER does.
package rpp
