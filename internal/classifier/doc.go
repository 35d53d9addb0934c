// Package classifier answers the single question the decision engine asks of
// camera frames: is there a cat in this image with at least the given
// confidence?
//
// Fake returns random answers for demos, HTTP delegates to a remote labelling
// service and Caching memoizes answers per frame digest.
package classifier
