/*Package interval loads genomic intervals from BED files.

  Intervals are kept exactly as written: 0-based starts, exclusive ends, no
  merging and no sorting.  A BEDFile holds every interval of one input in
  file order and hands them out through a single forward cursor.

  Coordinates are PosType, an unsigned 64-bit integer, so arithmetic that
  moves a start coordinate to the left must saturate at zero.
*/
package interval
