/*
Package markov provides an in-memory, time-homogeneous Markov chain over
sequences of arbitrary tokens.

Tokens can be strings, numbers, booleans or any JSON-serializable composite
value; structurally equal values are the same token. A chain of order k
keys its transitions by states of k+1 consecutive tokens and records, for
every state, both the tokens that follow it and the tokens that precede it.
This lets a chain be walked forward and backward from any observed state,
which is how Run builds an on-topic reply around a partial input.

Chains serialize to a plain JSON array of records and import back without
loss. Persistence, tokenization of raw text and any network surface live
outside this package.

A typical use:

	c, err := markov.New(corpus, markov.WithOrder(1), markov.WithTokenMap(true))
	if err != nil {
		return err
	}
	res := c.Run(markov.Strings("fish"), markov.WithRunMissingTokens(false))
	fmt.Println(res.All())
*/
package markov
