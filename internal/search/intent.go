package search

import "strings"

// intent captures the coarse purpose of a query, used to bias both the
// keyword scorer's bonuses and the fusion weights.
type intent struct {
	isCommand        bool
	isConcept        bool
	isTroubleshooting bool
}

var commandMarkers = []string{"nv set", "nv show", "nv config", "nvue", "show", "配置", "如何使用", "命令"}
var conceptMarkers = []string{"what is", "介绍", "定义", "是什么"}
var troubleshootMarkers = []string{"debug", "错误", "问题", "起不来", "故障", "troubleshoot"}

func classifyIntent(lowerQuery string) intent {
	return intent{
		isCommand:         containsAny(lowerQuery, commandMarkers),
		isConcept:         containsAny(lowerQuery, conceptMarkers),
		isTroubleshooting: containsAny(lowerQuery, troubleshootMarkers),
	}
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

// technicalQueryRe-equivalent: queries that should weight keyword results
// higher in fusion (networking jargon, explicit command syntax).
var fusionBiasMarkers = []string{
	"mlag", "bgp", "evpn", "vxlan", "bond", "cumulus",
	"nv set", "nv show", "show", "如何", "配置", "命令",
}

func isFusionBiasQuery(lowerQuery string) bool {
	return containsAny(lowerQuery, fusionBiasMarkers)
}
