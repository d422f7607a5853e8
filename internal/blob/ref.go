package blob

import (
	"net/url"
	"strings"
)

// KeyFromRef resolves an image reference to an object key in bucket.
// Accepted forms:
//
//	missing_posts/u1/x.jpg                       bare storage path
//	s3://bucket/missing_posts/u1/x.jpg
//	<publicBaseURL>/missing_posts/u1/x.jpg
//	https://host/v0/b/bucket/o/missing_posts%2Fu1%2Fx.jpg  object API URL for this bucket only
//	https://host/bucket/missing_posts/u1/x.jpg   path-style public URL
//
// The second result is false for references outside the bucket.
func KeyFromRef(ref, bucket, publicBaseURL string) (string, bool) {
	if ref == "" {
		return "", false
	}
	if !strings.Contains(ref, "://") {
		key := strings.TrimPrefix(ref, "/")
		return key, key != ""
	}

	if rest, ok := strings.CutPrefix(ref, "s3://"+bucket+"/"); ok {
		return rest, rest != ""
	}

	if base := strings.TrimSuffix(publicBaseURL, "/"); base != "" {
		if rest, ok := strings.CutPrefix(ref, base+"/"); ok {
			key, err := url.PathUnescape(rest)
			if err != nil {
				return "", false
			}
			return key, key != ""
		}
	}

	u, err := url.Parse(ref)
	if err != nil {
		return "", false
	}
	if bucket == "" {
		return "", false
	}
	if escaped, ok := strings.CutPrefix(u.EscapedPath(), "/v0/b/"+url.PathEscape(bucket)+"/o/"); ok {
		key, err := url.PathUnescape(escaped)
		if err != nil {
			return "", false
		}
		return key, key != ""
	}
	if rest, ok := strings.CutPrefix(strings.TrimPrefix(u.Path, "/"), bucket+"/"); ok {
		return rest, rest != ""
	}
	return "", false
}
