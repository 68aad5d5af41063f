package model

type UploadIPFSRequest struct{}

type UploadIPFSResponse struct {
	Hash string `json:"hash"`
	Name string `json:"name"`
	Size string `json:"size"`
}
