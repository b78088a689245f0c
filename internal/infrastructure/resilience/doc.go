/*
Package resilience provides the circuit breakers that guard outbound plugin
requests.

A Breaker moves between three states:

	Closed --[Trip]-> Open --[Cooldown]-> Half-Open --[Trials successes]-> Closed
	                                          |
	                                       [failure]
	                                          v
	                                         Open

A Set keeps one breaker per key. The fetch provider keys it by host so one
failing upstream does not block requests to the others.

	hosts := resilience.NewSet(resilience.Settings{
		Trials:   2,
		Cooldown: 30 * time.Second,
		Trip: func(c resilience.Counts) bool {
			return c.ConsecutiveFailures >= 10
		},
	})

	err := hosts.Get(u.Host).Do(func() error {
		return send(req)
	})
*/
package resilience
