//go:build posedebug

package posedb

const debugAssertions = true
