// Client for an external text scoring service (toxicity, threat, and similar attributes), used as an optional signal by the labeling engine.
//
// The service is a black box: a failed, slow, or rate-limited call never fails labeling, it just means the signal is missing for that post.
package scoring
