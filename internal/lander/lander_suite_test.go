package lander_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestLander(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Lander Suite")
}
