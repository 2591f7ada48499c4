package sqlinline

const QSelectIntegrationToken = `--sql 213e4563-5f85-45b6-b83d-adebfcd925bf
select token
from integration_tokens
where provider = $1;
`

const QUpsertIntegrationToken = `--sql b33acf74-9803-45d2-9471-e33b94b5e2c3
insert into integration_tokens (provider, token, props, updated_at)
values ($1, $2, $3, now())
on conflict (provider) do update
set token = excluded.token, props = excluded.props, updated_at = now();
`
