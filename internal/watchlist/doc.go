// Package watchlist loads the list of wanted audiobooks.
//
// A watchlist groups wanted books under the author they are searched by:
//
//	audiobooks:
//	  author:
//	    Yuu Tanaka:
//	      - title: Reincarnated as a Sword
//	        series: Reincarnated as a Sword
//	        narrator: Josh Hurley
//
// YAML and JSON files share that shape. A narrator may be a single string or
// a list. YAML keeps authors in file order; JSON authors are sorted by name.
package watchlist
