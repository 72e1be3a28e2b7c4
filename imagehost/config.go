package imagehost

import (
	"context"
	"log"

	appConfig "github.com/raushankrgupta/fitchy/config"
)

// NewChainFromConfig assembles the host chain: S3 when a bucket is set, Imgur when a
// client id is set, then the two keyless hosts.
func NewChainFromConfig(ctx context.Context) *Chain {
	var hosts []Host
	if appConfig.AWSBucketName != "" {
		h, err := NewS3(ctx, appConfig.AWSRegion, appConfig.AWSBucketName)
		if err != nil {
			log.Printf("[ImageHost] S3 disabled: %v", err)
		} else {
			hosts = append(hosts, h)
		}
	}
	if appConfig.ImgurClientID != "" {
		hosts = append(hosts, NewImgur(appConfig.ImgurClientID))
	}
	hosts = append(hosts, NewCatbox(), NewTmpfiles())
	return NewChain(hosts...)
}
