package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOutputPath(t *testing.T) {
	assert.Equal(t, filepath.Join("photos", "bear.small.jpg"), outputPath(filepath.Join("photos", "bear.jpeg"), "", "image/jpeg"))
	assert.Equal(t, filepath.Join("out", "fox.small.png"), outputPath(filepath.Join("photos", "fox.png"), "out", "image/png"))
	assert.Equal(t, "owl.small.jpg", outputPath("owl.webp", "", "image/jpeg"))
}
