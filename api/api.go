// Package api holds the HTTP wire types shared by the server and the client.
package api

import "github.com/nvr-ai/go-detect/common"

// Routes served by the detection service.
const (
	PathHealth    = "/healthz"
	PathMetrics   = "/metrics"
	PathDetectors = "/api/v1/detectors"
	// PathDetect is followed by the detector kind, e.g. /api/v1/detect/ssd.
	PathDetect = "/api/v1/detect/"
)

// HeaderRequestID carries the request correlation ID in both directions.
const HeaderRequestID = "X-Request-ID"

// Query parameters accepted by the detect route.
const (
	QueryThreshold    = "threshold"
	QueryNMSThreshold = "nms"
)

// DetectResponse is the body of a successful detect call.
type DetectResponse struct {
	RequestID  string             `json:"requestID"`
	Detector   string             `json:"detector"`
	Format     string             `json:"format"`
	Width      int                `json:"width"`
	Height     int                `json:"height"`
	Detections []common.Detection `json:"detections"`
}

// DetectorsResponse lists the loaded detectors.
type DetectorsResponse struct {
	Detectors []string `json:"detectors"`
}

// ErrorResponse is the body of every failed call.
type ErrorResponse struct {
	RequestID string `json:"requestID,omitempty"`
	Error     string `json:"error"`
}
