package llm

import "context"

const demoResponse = `{
  "face_detected": true,
  "skin_type": "combination",
  "concerns": ["acne", "oiliness"],
  "severity": {"acne": "mild", "oiliness": "moderate"},
  "notes": "Visible shine across the T-zone with a few small blemishes on the chin."
}`

// DemoClient returns a fixed analysis without calling a provider.
type DemoClient struct{}

// Complete returns a canned profile JSON.
func (DemoClient) Complete(ctx context.Context, req VisionRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	_ = req
	return demoResponse, nil
}
