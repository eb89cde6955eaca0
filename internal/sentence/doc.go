// Package sentence assembles backend speech segments into finalized
// transcript records. Successive partial results merge into one pending
// sentence, repeated recognitions of the same audio window are suppressed,
// and sentence-final punctuation or an explicit force closes the sentence
// into an immutable record.
package sentence
