package model

import (
	"fmt"
	"strings"
)

type GPUFamily string

const (
	GPU2060S GPUFamily = "2060S"
	GPU3080  GPUFamily = "3080"
	GPU3090  GPUFamily = "3090"
)

var gpuDisplayNames = map[GPUFamily]string{
	GPU2060S: "NVIDIA GEFORCE RTX 2060 SUPER",
	GPU3080:  "NVIDIA GEFORCE RTX 3080",
	GPU3090:  "NVIDIA GEFORCE RTX 3090",
}

// ParseGPUFamily accepts the family key case-insensitively ("2060s" == "2060S").
func ParseGPUFamily(s string) (GPUFamily, error) {
	v := GPUFamily(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := gpuDisplayNames[v]; !ok {
		return "", fmt.Errorf("%w: unknown gpu %q", ErrConfigurationMismatch, s)
	}
	return v, nil
}

func (g GPUFamily) DisplayName() string {
	if name, ok := gpuDisplayNames[g]; ok {
		return name
	}
	return string(g)
}

// ProductTarget is one vendor product a worker polls and tries to reserve.
type ProductTarget struct {
	ProductID string    `json:"productId"`
	GPU       GPUFamily `json:"gpu"`
	Locale    string    `json:"locale"`
	Currency  string    `json:"currency"`
}
