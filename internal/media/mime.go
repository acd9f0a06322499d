// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package media

import (
	"io"
	"os"

	"github.com/h2non/filetype"
)

// sniffBytes is enough for every matcher filetype ships.
const sniffBytes = 8192

const DefaultFrameMIME = "image/jpeg"

// DetectMIME sniffs the content type of a file. Unknown content yields "".
func DetectMIME(path string) (string, error) {
	head, err := ReadHead(path)
	if err != nil {
		return "", err
	}
	kind, err := filetype.Match(head)
	if err != nil || kind == filetype.Unknown {
		return "", err
	}
	return kind.MIME.Value, nil
}

// FrameMIME is the MIME type to declare when sending a frame to a model.
func FrameMIME(path string) string {
	mime, err := DetectMIME(path)
	if err != nil || mime == "" {
		return DefaultFrameMIME
	}
	return mime
}

// IsAcceptableUpload rejects empty content and content that is recognisably
// something other than video or audio. Content filetype does not recognise is
// let through so ffprobe can make the final call.
func IsAcceptableUpload(head []byte) bool {
	if len(head) == 0 {
		return false
	}
	kind, err := filetype.Match(head)
	if err != nil || kind == filetype.Unknown {
		return true
	}
	return filetype.IsVideo(head) || filetype.IsAudio(head)
}

// ReadHead returns the leading bytes of a file for content sniffing.
func ReadHead(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	buf := make([]byte, sniffBytes)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, err
	}
	return buf[:n], nil
}
