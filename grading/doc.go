// Multi-label evaluation of labeler output against a human-labeled gold set.
//
// Scoring is over concrete labels only: configured meta labels (and the severity labels) are removed from both sides first. Exact match is set equality. Label-level precision and recall are computed from true/false positive/negative counts pooled across every scored post (micro averaging), never averaged per post.
//
// Posts which could not be fetched are skipped: they are counted and listed in the report, and contribute to no other total.
package grading
