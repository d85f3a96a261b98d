package blob

import "net/http"

func detectContentType(data []byte) string {
	return http.DetectContentType(data)
}
