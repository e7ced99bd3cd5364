// Package sam is a library for parsing and representing SAM and BAM
// files, as produced by PacBio instruments for subreads and CCS reads.
//
// Alignments can be read one at a time with a Scanner, or pushed
// through a pargo pipeline of Filter values with the RunPipeline
// method of InputFile. Both preserve the order of the alignments in
// the input. OutputFile writes SAM or BAM, depending on the file
// extension, and always starts with a header, which is typically the
// unchanged header of an input file.
package sam
