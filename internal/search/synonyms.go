package search

import "strings"

// synonyms is a static, one-hop expansion table for Chinese/English
// networking terms, protocol abbreviations, and command verbs. Keys are
// looked up two ways: an exact token match, and a substring match where
// the key appears inside a longer token (e.g. "mlag" inside "mlagbond").
var synonyms = map[string][]string{
	"mlag":       {"多机箱链路聚合", "link aggregation"},
	"bgp":        {"边界网关协议", "border gateway protocol"},
	"evpn":       {"以太网vpn", "ethernet vpn"},
	"vxlan":      {"虚拟扩展局域网"},
	"bond":       {"绑定", "链路聚合", "bonding"},
	"vlan":       {"虚拟局域网"},
	"交换机":        {"switch"},
	"路由器":        {"router"},
	"配置":         {"config", "configure", "configuration"},
	"接口":         {"interface"},
	"端口":         {"port", "interface"},
	"网关":         {"gateway"},
	"故障":         {"fault", "failure", "issue", "problem"},
	"排障":         {"troubleshoot", "troubleshooting", "debug"},
	"日志":         {"log", "logs"},
	"show":       {"显示", "查看"},
	"set":        {"设置", "配置"},
	"config":     {"配置"},
	"nvue":       {"nv set", "nv show", "nv config"},
	"debug":      {"调试", "排障"},
	"错误":         {"error", "fail", "failure"},
}

// expandTokens performs a one-hop expansion: for each token, add its
// mapped values if present; additionally, for every synonym key that is a
// substring of the token, add that key's mapped values too.
func expandTokens(tokens []string) []string {
	seen := make(map[string]bool, len(tokens)*2)
	out := make([]string, 0, len(tokens)*2)

	add := func(t string) {
		if t == "" || seen[t] {
			return
		}
		seen[t] = true
		out = append(out, t)
	}

	for _, t := range tokens {
		add(t)
		if mapped, ok := synonyms[t]; ok {
			for _, m := range mapped {
				add(m)
			}
		}
		for key, mapped := range synonyms {
			if key == t {
				continue
			}
			if strings.Contains(t, key) {
				for _, m := range mapped {
					add(m)
				}
			}
		}
	}
	return out
}
